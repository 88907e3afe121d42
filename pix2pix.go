// Package pix2pix implements the U-Net generator of a
// pix2pix image-to-image translation model.
//
// A Generator maps a batch of images to a batch of images
// with the same width and height.
// Its encoder repeatedly halves the resolution of the
// input, and its decoder mirrors the encoder, consuming
// the matching encoder activation at every resolution.
//
// Images are row-major depth-minor tensors with values
// between -1 and 1.
// See pixconv.ImageToTensor for converting images to
// tensors.
//
// Training is left to the caller, who can differentiate
// the output of Apply with respect to Parameters.
package pix2pix
