package scribe

import "embed"

// WebFiles holds the upload/link form served at /.
//
//go:embed web/*
var WebFiles embed.FS
