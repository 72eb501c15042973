// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helpers shared by package tests: a controllable
// clock, environment helpers that restore state on cleanup, and a builder for
// package archives (including the greeting card fixture used by the import
// tests).
package testutil
