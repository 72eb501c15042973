// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/h5pkit/h5pkit/internal/issue"
)

// renderError writes err to w, in its actionable form when it carries one,
// followed by the issue catalog entry explaining how to fix it.
func renderError(w io.Writer, err error, verbose bool, markdownStyle string) {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		fmt.Fprintf(w, "%s %s\n", errorIcon, ae.Format(verbose))
	} else {
		fmt.Fprintf(w, "%s %s\n", errorIcon, err)
	}

	entry := issue.ForError(err)
	if entry == nil {
		return
	}
	rendered, renderErr := entry.Render(markdownStyle)
	if renderErr != nil {
		slog.Warn("failed to render issue catalog entry", "issueID", entry.Id(), "error", renderErr)
		return
	}
	fmt.Fprint(w, rendered)
}
