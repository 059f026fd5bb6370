package mcp

import (
	"context"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

const serverInstructions = `scanpoint runs one attendance check-in station.

A scan goes scanning -> processing -> confirming -> verified | saved | error -> scanning.
- submit_scan feeds one decoded code. Identical payloads within two seconds are suppressed.
- When the station asks for confirmation, call confirm_checkin or reject_checkin.
- "saved" means the registry was unreachable; the scan is queued and synced later.
- station_status, list_pending and recent_checkins are read-only.
- trigger_sync asks the background sync to drain the queue now.

See scanpoint://docs/states for what each state means.
`

type docResource struct {
	URI         string
	Name        string
	Title       string
	Description string
	Content     string
}

var docResources = []docResource{
	{
		URI:         "scanpoint://docs/states",
		Name:        "states",
		Title:       "Station states",
		Description: "What each scanning session state means and how long it stays on screen.",
		Content: `# Station states

| State      | Meaning                                                    |
|------------|------------------------------------------------------------|
| scanning   | Ready for the next code.                                   |
| processing | Resolving the code and writing the check-in.               |
| confirming | Identity resolved; waiting for confirm_checkin.            |
| verified   | Check-in recorded, or the activity was already complete.   |
| saved      | Registry unreachable; scan queued for background sync.     |
| error      | Unreadable or unknown code; nothing was recorded.          |

verified and saved return to scanning after the feedback delay, error after the error delay.
A scan submitted in any state other than scanning is refused with BUSY.
`,
	},
	{
		URI:         "scanpoint://docs/sync",
		Name:        "sync",
		Title:       "Offline queue and sync",
		Description: "How queued scans are replayed against the registry.",
		Content: `# Offline queue and sync

Queued scans are replayed oldest first when connectivity returns, on trigger_sync and on a backstop interval.

- Unknown codes are discarded and journaled.
- A network failure stops the drain; the failed scan keeps its place and its attempt count grows.
- Going offline mid-drain stops the drain before the next scan.
- A scan that arrives after the activity is complete is reported as already complete, never as an error.
`,
	},
}

func registerDocResources(server *sdkmcp.Server) {
	for _, doc := range docResources {
		server.AddResource(&sdkmcp.Resource{
			URI:         doc.URI,
			Name:        doc.Name,
			Title:       doc.Title,
			Description: doc.Description,
			MIMEType:    "text/markdown",
			Size:        int64(len(doc.Content)),
		}, func(_ context.Context, req *sdkmcp.ReadResourceRequest) (*sdkmcp.ReadResourceResult, error) {
			uri := doc.URI
			if req != nil && req.Params != nil && req.Params.URI != "" {
				uri = req.Params.URI
			}
			return &sdkmcp.ReadResourceResult{
				Contents: []*sdkmcp.ResourceContents{{
					URI:      uri,
					MIMEType: "text/markdown",
					Text:     doc.Content,
				}},
			}, nil
		})
	}
}
