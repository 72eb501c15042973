// SPDX-License-Identifier: MPL-2.0

// Package library manages installed libraries: installation from an
// extracted directory with patch-version ordering, uninstallation guarded by
// reverse dependencies, and read access to manifests, semantics, language
// files and assets.
//
// The Manager holds no locks. Callers serialize installs of the same library.
package library
