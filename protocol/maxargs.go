//go:build !rigelnet_maxargs8 && !rigelnet_maxargs32 && !rigelnet_maxargs64

package protocol

// MaxArgs is the per-call argument limit. Select 8, 32 or 64 with the
// rigelnet_maxargsN build tag; both ends of a connection must agree.
const MaxArgs = 16
