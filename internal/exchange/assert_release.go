//go:build !blmcdebug

package exchange

const debugAssertions = false
