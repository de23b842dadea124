// Package commitmsg derives the title and body of a merge commit from a pull
// request.
//
// The commit message can be overridden by adding a "Commit Message" section
// to the pull request description:
//
//	## Commit Message
//	Fix frobnicator crash on {{ base }}
//
//	Reported by {{ author | upper }}.
//
// The section ends at the next markdown heading. Its content is rendered
// as a restricted Go template. Pull request attributes are available as
// functions (dashes in attribute names are written as underscores, e.g.
// head_sha) and can be piped through the filters upper, lower, trim and
// capitalize. Control structures, variables and field accesses are
// rejected, so are unknown names.
package commitmsg
