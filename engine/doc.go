// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

// Package engine assembles registry, track, loader, position,
// identity, and attribution into the single object a host application
// embeds. It owns the one supervision tree the whole core runs under:
// a presence sweep and the identity worker are supervised services
// that restart on crash, while the packet source is consumed directly
// by the caller-driven Feed* methods rather than by a background
// service, since this core never opens its own sockets.
package engine
