// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"maps"
	"slices"

	"github.com/h5pkit/h5pkit/pkg/h5p"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	FileNotFoundId Id = iota + 1
	ConfigLoadFailedId
	CorruptPackageId
	InvalidManifestId
	DisallowedFileId
	PackageTooLargeId
	UnresolvedDependencyId
	DependencyCycleId
	LibraryInUseId
	LibraryNotFoundId
	ContentNotFoundId
	HubUnreachableId
	InstallationDeniedId
	InvalidContentTypeId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // format documentation for the failing artifact
	extLinks []HttpLink  // external links that might be useful for the user
}

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

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

const (
	packageDefinitionLink HttpLink = "https://h5p.org/documentation/developers/h5p-specification"
	libraryDefinitionLink HttpLink = "https://h5p.org/library-definition"
	semanticsLink         HttpLink = "https://h5p.org/semantics"
)

var (
	render = glamour.Render

	fileNotFoundIssue = &Issue{
		id: FileNotFoundId,
		mdMsg: `
# File not found!

The file you passed does not exist or cannot be read.

## Things you can try:
- Check the path for typos
- Use an absolute path when running from another directory`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

h5pkit could not read or validate its configuration file.

## Things you can try:
- Check the CUE syntax of your config file
- Show the effective configuration:
~~~
$ h5pkit config show
~~~

- Environment variables (` + "`H5PKIT_*`" + `) override file values; check them too

## Example config.cue:
~~~cue
data_dir: "/var/lib/h5pkit"
log_level: "info"
hub: {
  refresh_interval: "24h"
}
~~~`,
	}

	corruptPackageIssue = &Issue{
		id: CorruptPackageId,
		mdMsg: `
# The package is not a valid archive!

An .h5p package is a zip archive. The file could not be opened as one.

## Things you can try:
- Download or export the package again
- Check that the file was not truncated during transfer`,
		docLinks: []HttpLink{packageDefinitionLink},
	}

	invalidManifestIssue = &Issue{
		id: InvalidManifestId,
		mdMsg: `
# The package manifest is missing or invalid!

Every package needs an ` + "`h5p.json`" + ` at its root, and every library directory needs a
` + "`library.json`" + ` whose name and version match the directory name.

## Things you can try:
- Validate the package to see every problem at once:
~~~
$ h5pkit package validate --all course.h5p
~~~

- Check that library directories are named ` + "`Machine.Name-MAJOR.MINOR`" + ``,
		docLinks: []HttpLink{packageDefinitionLink, libraryDefinitionLink, semanticsLink},
	}

	disallowedFileIssue = &Issue{
		id: DisallowedFileId,
		mdMsg: `
# The package contains a disallowed file!

Packages may only contain files whose extensions are on the allow list.

## Things you can try:
- Remove the file from the package and export it again
- Rename files that carry a wrong extension`,
		docLinks: []HttpLink{packageDefinitionLink},
	}

	packageTooLargeIssue = &Issue{
		id: PackageTooLargeId,
		mdMsg: `
# The package is too large!

A file in the package, or the package as a whole, exceeds the configured size limit.

## Things you can try:
- Compress large media before adding it to the content
- Raise the limits in your config file:
~~~cue
limits: {
  max_file_size:  67108864
  max_total_size: 536870912
}
~~~`,
	}

	unresolvedDependencyIssue = &Issue{
		id: UnresolvedDependencyId,
		mdMsg: `
# A library dependency cannot be resolved!

A library required by the package is neither bundled with it nor installed.

## Things you can try:
- Install the missing content type from the hub:
~~~
$ h5pkit hub install H5P.Example
~~~

- Export the package again with all libraries included`,
		docLinks: []HttpLink{libraryDefinitionLink},
	}

	dependencyCycleIssue = &Issue{
		id: DependencyCycleId,
		mdMsg: `
# Libraries depend on each other in a cycle!

The bundled libraries cannot be installed in dependency order.

## Things you can try:
- Check the ` + "`preloadedDependencies`" + ` of the libraries named above
- Contact the author of the content type`,
		docLinks: []HttpLink{libraryDefinitionLink},
	}

	libraryInUseIssue = &Issue{
		id: LibraryInUseId,
		mdMsg: `
# The library is still in use!

Other installed libraries depend on the library you tried to remove.

## Things you can try:
- List what depends on it:
~~~
$ h5pkit library show H5P.Example-1.0
~~~

- Remove the dependent libraries first`,
	}

	libraryNotFoundIssue = &Issue{
		id: LibraryNotFoundId,
		mdMsg: `
# Library not found!

No installed library matches the given name.

## Things you can try:
- List installed libraries:
~~~
$ h5pkit library list
~~~

- Use the ` + "`Machine.Name-MAJOR.MINOR`" + ` form, for example ` + "`H5P.Example-1.0`" + ``,
	}

	contentNotFoundIssue = &Issue{
		id: ContentNotFoundId,
		mdMsg: `
# Content not found!

No content object exists with the given id.

## Things you can try:
- List stored content:
~~~
$ h5pkit content list
~~~`,
	}

	hubUnreachableIssue = &Issue{
		id: HubUnreachableId,
		mdMsg: `
# The content type hub is unreachable!

The catalog could not be fetched. Cached entries are still shown when available.

## Things you can try:
- Check your network connection and proxy settings
- Check the hub endpoints in your config file
- Retry later with:
~~~
$ h5pkit hub update --force
~~~`,
	}

	installationDeniedIssue = &Issue{
		id: InstallationDeniedId,
		mdMsg: `
# Installation denied!

The current user may not install this content type.

## Things you can try:
- Recommended content types only need the "install recommended" permission
- Restricted content types need to be enabled in the config file:
~~~cue
hub: {
  enable_restricted: true
}
~~~`,
	}

	invalidContentTypeIssue = &Issue{
		id: InvalidContentTypeId,
		mdMsg: `
# Unknown content type!

The id is not a valid machine name or is not listed in the hub catalog.

## Things you can try:
- Refresh and list the catalog:
~~~
$ h5pkit hub list
~~~`,
	}

	issues = map[Id]*Issue{
		fileNotFoundIssue.Id():         fileNotFoundIssue,
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		corruptPackageIssue.Id():       corruptPackageIssue,
		invalidManifestIssue.Id():      invalidManifestIssue,
		disallowedFileIssue.Id():       disallowedFileIssue,
		packageTooLargeIssue.Id():      packageTooLargeIssue,
		unresolvedDependencyIssue.Id(): unresolvedDependencyIssue,
		dependencyCycleIssue.Id():      dependencyCycleIssue,
		libraryInUseIssue.Id():         libraryInUseIssue,
		libraryNotFoundIssue.Id():      libraryNotFoundIssue,
		contentNotFoundIssue.Id():      contentNotFoundIssue,
		hubUnreachableIssue.Id():       hubUnreachableIssue,
		installationDeniedIssue.Id():   installationDeniedIssue,
		invalidContentTypeIssue.Id():   invalidContentTypeIssue,
	}

	// errorIssues maps error kinds to catalog entries, most specific first.
	errorIssues = []struct {
		err error
		id  Id
	}{
		{h5p.ErrCorruptArchive, CorruptPackageId},
		{h5p.ErrMissingManifest, InvalidManifestId},
		{h5p.ErrMalformedManifest, InvalidManifestId},
		{h5p.ErrLibraryManifestMismatch, InvalidManifestId},
		{h5p.ErrInvalidSemantics, InvalidManifestId},
		{h5p.ErrUnsafeArchivePath, CorruptPackageId},
		{h5p.ErrDisallowedFileType, DisallowedFileId},
		{h5p.ErrPackageTooLarge, PackageTooLargeId},
		{h5p.ErrUnresolvedDependency, UnresolvedDependencyId},
		{h5p.ErrDependencyCycle, DependencyCycleId},
		{h5p.ErrLibraryIsDependedUpon, LibraryInUseId},
		{h5p.ErrLibraryNotFound, LibraryNotFoundId},
		{h5p.ErrContentNotFound, ContentNotFoundId},
		{h5p.ErrRemoteUnreachable, HubUnreachableId},
		{h5p.ErrInstallationDenied, InstallationDeniedId},
		{h5p.ErrInvalidContentTypeFormat, InvalidContentTypeId},
		{h5p.ErrNoContentTypeSpecified, InvalidContentTypeId},
	}
)

// Values returns every catalog entry ordered by id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int { return int(a.id - b.id) })
}

func Get(id Id) *Issue {
	return issues[id]
}

// ForError returns the catalog entry explaining err, or nil. An entry linked
// by an ActionableError in the chain takes precedence.
func ForError(err error) *Issue {
	if err == nil {
		return nil
	}
	var ae *ActionableError
	if errors.As(err, &ae) && ae.IssueID != 0 {
		return Get(ae.IssueID)
	}
	for _, e := range errorIssues {
		if errors.Is(err, e.err) {
			return issues[e.id]
		}
	}
	return nil
}
