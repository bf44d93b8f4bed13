// Package scaler defines the shared scaling unit that sits in front of the
// blender, and a software implementation of it.
//
// The unit reads a buffer in any supported format, scales the selected
// source rectangle to the destination size and hands the blender a single
// 32-bit RGB stream. There is at most one per display engine and it can
// serve only one plane at a time.
package scaler

import (
	"github.com/valerio/go-overlay/overlay/format"
	"github.com/valerio/go-overlay/overlay/kms"
)

// Scaler is the contract the plane code drives. Calls are staged register
// writes and never block.
type Scaler interface {
	// Init brings the unit out of reset and loads default coefficients.
	Init() error
	// UpdateCoordinates programs input and output size from the state.
	UpdateCoordinates(state *kms.PlaneState) error
	// UpdateBuffer programs buffer addresses and strides from the state.
	UpdateBuffer(state *kms.PlaneState) error
	// SetOutputFormat programs the input format from the state's buffer and
	// the intermediate format handed to the blender.
	SetOutputFormat(state *kms.PlaneState, out format.Fourcc) error
	// Enable starts processing frames.
	Enable()
	// Exit stops the unit and puts it back in reset.
	Exit()
	// FormatModSupported reports whether the unit can read (f, mod) buffers.
	FormatModSupported(f format.Fourcc, mod format.Modifier) bool
}
