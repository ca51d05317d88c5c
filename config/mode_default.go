//go:build !production

package config

const defaultMode = "development"
