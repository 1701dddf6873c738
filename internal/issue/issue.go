// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/slices"
)

// Id identifies a catalog entry.
type Id int

const (
	BuildfileNotFoundId Id = iota + 1
	BuildfileParseErrorId
	InvalidProjectGraphId
	DependencyCycleId
	TaskNotFoundId
	TaskFailedId
	ConfigLoadFailedId
	PropertiesLoadFailedId
)

type (
	// MarkdownMsg is catalog text rendered with glamour.
	MarkdownMsg string

	// HttpLink is a documentation URL.
	HttpLink string

	// Issue is a catalog entry with remediation guidance.
	Issue struct {
		id       Id
		mdMsg    MarkdownMsg
		docLinks []HttpLink
		extLinks []HttpLink
	}
)

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the entry as terminal markdown. stylePath is a glamour
// style name ("dark", "light", "notty") or a JSON style file.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range append(i.DocLinks(), i.extLinks...) {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	buildfileNotFoundIssue = &Issue{
		id: BuildfileNotFoundId,
		mdMsg: `
# No build descriptor found!

buildorch looks for ` + "`build.cue`" + ` first and then ` + "`build.hcl`" + ` in the
working directory.

## Things you can try:
- Run the command from the directory holding your root project
- Point at a descriptor explicitly:
~~~
$ buildorch --file path/to/build.cue tasks
~~~
- Set ` + "`buildfile`" + ` in your config.cue`,
	}

	buildfileParseErrorIssue = &Issue{
		id: BuildfileParseErrorId,
		mdMsg: `
# Failed to parse the build descriptor!

The descriptor has a syntax error or does not match the schema.

## Things you can try:
- Check the line and field named in the message above
- A task may set ` + "`run`" + ` or ` + "`delete`" + `, not both
- Project ids look like ` + "`:app`" + ` or ` + "`:feature:login`" + `

## Example build.cue:
~~~cue
group: "com.example.finances"
projects: [{
	id: ":app"
	plugins: ["com.android.application"]
	android: {compile_sdk: 35, min_sdk: 24}
}]
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	invalidProjectGraphIssue = &Issue{
		id: InvalidProjectGraphId,
		mdMsg: `
# Invalid project declaration!

A project could not be added to the build.

## Things you can try:
- Declare a parent project before its children
- Make sure every project id is declared once
- Apply ` + "`com.android.application`" + ` or ` + "`com.android.library`" + ` before the Flutter plugin
- Add the matching plugin before using an ` + "`android`" + ` or ` + "`kotlin`" + ` block`,
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Dependency cycle detected!

Projects or tasks depend on each other in a loop, so no evaluation order
exists. Nothing was executed.

## Things you can try:
- Follow the cycle printed above and remove one of its edges
- Check ` + "`evaluation_depends_on`" + `: every other project already depends on it
- Use ` + "`buildorch plan <task>`" + ` to inspect task ordering`,
	}

	taskNotFoundIssue = &Issue{
		id: TaskNotFoundId,
		mdMsg: `
# Task not found!

The requested task, or one of its dependencies, is not registered.

## Things you can try:
- List the available tasks:
~~~
$ buildorch tasks
~~~
- Check the spelling in ` + "`depends_on`" + ` lists`,
	}

	taskFailedIssue = &Issue{
		id: TaskFailedId,
		mdMsg: `
# Task failed!

A task returned an error, so the remaining tasks in the plan were skipped.
Tasks that already completed were not rolled back.

## Things you can try:
- Re-run with ` + "`--verbose`" + ` to see the task output and error chain
- Run the failing task alone to reproduce the problem
- Run ` + "`buildorch run clean`" + ` if stale outputs are involved`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Check the file for CUE syntax errors
- Compare it with the defaults:
~~~
$ buildorch config show
~~~
- Remove the file to fall back to defaults`,
	}

	propertiesLoadFailedIssue = &Issue{
		id: PropertiesLoadFailedId,
		mdMsg: `
# Failed to read the properties file!

The properties file exists but could not be parsed. A missing file is fine:
every setting it would provide is treated as absent.

## Things you can try:
- Use ` + "`key=value`" + ` lines; ` + "`#`" + ` starts a comment
- Check that the file is UTF-8 encoded
- Point ` + "`properties_file`" + ` at the right file`,
	}

	catalog = []*Issue{
		buildfileNotFoundIssue,
		buildfileParseErrorIssue,
		invalidProjectGraphIssue,
		dependencyCycleIssue,
		taskNotFoundIssue,
		taskFailedIssue,
		configLoadFailedIssue,
		propertiesLoadFailedIssue,
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	out := slices.Clone(catalog)
	slices.SortFunc(out, func(a, b *Issue) int { return int(a.id) - int(b.id) })
	return out
}

// Get returns the entry for id, or nil.
func Get(id Id) *Issue {
	idx := slices.IndexFunc(catalog, func(i *Issue) bool { return i.id == id })
	if idx < 0 {
		return nil
	}
	return catalog[idx]
}
