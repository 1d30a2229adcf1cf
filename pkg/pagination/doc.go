// Package pagination turns single-page Canvas list endpoints into complete
// collections.
//
// Canvas list endpoints accept page and per_page parameters. The paginator
// requests page 1, 2, 3, ... and stops at the first page that comes back
// empty; it never inspects Link headers or compares the page length with the
// requested size. Requests are strictly sequential, with a fixed delay after
// every fetch that keeps the client well under the Canvas quota.
//
// Example usage:
//
//	p := pagination.New[cache.Record](pagination.DefaultConfig(), logger)
//	records, err := p.FetchAll(ctx, "/api/v1/courses/1/users",
//		func(ctx context.Context, page, perPage int) ([]cache.Record, error) {
//			return course.RosterPage(ctx, query, page, perPage)
//		})
//
// The paginator:
//   - Starts at page 1 and stops only on an empty page
//   - Waits Config.Delay after each fetch, including the empty one
//   - Returns fetch errors immediately with no partial data
//   - Checks ctx between requests and returns the partial result on cancellation
package pagination
