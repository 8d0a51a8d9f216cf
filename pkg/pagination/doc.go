// Package pagination drives cursor-based traversal of the upstream
// ranking endpoint without assuming a fixed response shape.
//
// The upstream API's field names and nesting drift across deployments,
// so the walker does not hard-code a path to either the universe IDs or
// the continuation token. Instead an ExtractRule collects the target
// field wherever it appears in the decoded response graph, and the next
// cursor is probed from a fixed, ordered list of plausible locations.
//
// Example usage:
//
//	rule := pagination.DefaultExtractRule()
//	walker := pagination.NewWalker(fetcher, pagination.Config{
//		BaseURL: "https://games.roblox.com/v1/games/list-ranked",
//		SortID:  "top-earning",
//		Limit:   1500,
//	}, rule, logger)
//	ranked, err := walker.Walk(ctx)
//
// A page that yields zero new IDs after a previously productive page,
// while the response still carries a continuation token, is treated as
// schema drift rather than exhaustion: the raw payload is dumped for
// offline inspection and the walk fails. Without a token the same page
// is simply the end of the ranking.
package pagination
