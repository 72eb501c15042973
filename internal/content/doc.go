// SPDX-License-Identifier: MPL-2.0

// Package content manages content objects: creation and update of their
// manifest and parameters, their files, and copying content out of an
// extracted package.
package content
