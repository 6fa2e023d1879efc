//go:build embed

package main

import "embed"

const embeddedUI = true

//go:embed ui/dist/*
var uiFiles embed.FS
