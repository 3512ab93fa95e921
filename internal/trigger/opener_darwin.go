//go:build darwin

package trigger

const openCommand = "open"
