// Package echo
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Line-oriented echo protocol served by the reactor. Each newline-terminated
// line is answered on the same connection: "PING" with "PONG", "QUIT" with
// "BYE" followed by a close, anything else with the line itself.
package echo
