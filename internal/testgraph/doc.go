// Package testgraph holds a graph description together with its generated
// static form. Tests run the static, dynamic and compiled forms side by
// side.
package testgraph

//go:generate go run pipelined.dev/graph/cmd/graphgen generate -o voice_gen.go voice.yaml

import _ "embed"

// VoiceDescription is the source of the Voice type.
//
//go:embed voice.yaml
var VoiceDescription []byte
