//go:build rigelnet_maxargs64

package protocol

const MaxArgs = 64
