//go:build !embed

package main

import "embed"

// Without the embed tag the UI is served from Server.UIPath on disk
const embeddedUI = false

var uiFiles embed.FS
