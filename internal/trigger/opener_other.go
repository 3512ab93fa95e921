//go:build !darwin

package trigger

const openCommand = "xdg-open"
