package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/btouchard/scout/internal/mcp/handlers"
)

func registerTools(s *server.MCPServer, deps *Deps) {
	// search: Global search across every provider
	s.AddTool(
		mcp.NewTool("search",
			mcp.WithDescription("Search the local catalog, indexed notes and the connected drive at once. Results are merged and ranked by how many query terms they match. Providers that have not answered within the search timeout are listed as still searching."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("Search terms. Field prefixes like title: and quotes are ignored."),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of results to return (default: 20, max: 200)"),
			),
		),
		handlers.Search(deps.Engine, deps.SearchTimeout),
	)

	// list_files: List drive files
	s.AddTool(
		mcp.NewTool("list_files",
			mcp.WithDescription("List files in the connected drive whose title contains the given text. Follows every result page."),
			mcp.WithString("query",
				mcp.Description("Text the file title must contain. If omitted, lists all files."),
			),
			mcp.WithNumber("limit",
				mcp.Description("Maximum number of files to show (default: 50)"),
			),
		),
		handlers.ListFiles(deps.Drive, deps.Notifier),
	)

	// get_file: Get one drive file's metadata
	s.AddTool(
		mcp.NewTool("get_file",
			mcp.WithDescription("Get metadata for a single drive file."),
			mcp.WithString("file_id",
				mcp.Required(),
				mcp.Description("The file ID, as shown by search or list_files"),
			),
		),
		handlers.GetFile(deps.Drive),
	)

	// drive_status: Connection state
	s.AddTool(
		mcp.NewTool("drive_status",
			mcp.WithDescription("Show whether the drive is connected and when the access token expires."),
		),
		handlers.DriveStatus(deps.Drive),
	)
}
