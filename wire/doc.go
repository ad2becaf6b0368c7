// prolink-core - Pro DJ Link position and identity core
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ashgrove-labs/prolink-core

/*
Package wire decodes the three UDP packet families a Pro DJ Link network
carries: device announcements, device status (CDJ-style and mixer
variants), and beat/precise-position notifications.

Socket setup and broadcast discovery are explicitly out of scope for this
module — callers own a net.PacketConn (or test fixture) and feed
raw datagrams to the Parse* functions here, stamping the receive time with
a Clock. Each family is identified by a fixed byte pattern at a
known header offset; a wrong-length packet is a hard parse error and the
caller should drop it rather than guess at a partial decode.
*/
package wire
