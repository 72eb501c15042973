// SPDX-License-Identifier: MPL-2.0

// Package hub talks to a remote content type catalog. Client implements the
// wire protocol, ContentTypeCache keeps a periodically refreshed copy of the
// catalog in a KeyValueStore, and ContentTypeRepository merges that copy with
// the locally installed libraries and installs content types on request.
package hub
