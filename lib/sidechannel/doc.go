// Package sidechannel provides the write-only side channels of the evercookie client. Each
// channel derives an artifact from a record instead of storing the value:
//
//   - WebRTC: the SDP of a local peer connection offer (pion/webrtc).
//   - Canvas: a PNG data URI of the record text rendered onto a blank canvas (x/image).
//
// Both implement backend.ICapturer and are stored through backend.NewSideChannel. The artifacts
// are never read back.
package sidechannel
