// Package domain defines the closed set of broadcast channels, their payload
// shapes, and the call-signaling message kinds shared by all livewire
// components.
package domain
