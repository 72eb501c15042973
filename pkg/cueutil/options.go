// SPDX-License-Identifier: MPL-2.0

package cueutil

// DefaultMaxFileSize bounds a single manifest or config document. Real
// library.json and h5p.json files stay far below it.
const DefaultMaxFileSize int64 = 5 << 20

// Option tunes one ParseJSON or ParseAndDecode call.
type Option func(*settings)

type settings struct {
	name            string
	limit           int64
	requireConcrete bool
}

func newSettings(opts []Option) settings {
	s := settings{name: "<input>", limit: DefaultMaxFileSize, requireConcrete: true}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithMaxFileSize rejects documents larger than size bytes with ErrFileTooLarge.
func WithMaxFileSize(size int64) Option {
	return func(s *settings) { s.limit = size }
}

// WithConcrete(false) accepts incomplete values and decodes them with CUE
// instead of through JSON. The config loader needs it because every config
// field is optional.
func WithConcrete(concrete bool) Option {
	return func(s *settings) { s.requireConcrete = concrete }
}

// WithFilename names the document in errors, e.g. "H5P.Example-1.0/library.json".
func WithFilename(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}
