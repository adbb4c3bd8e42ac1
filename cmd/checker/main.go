// Package main provides the entry point for the proxy checker CLI.
//
// Usage:
//
//	checker serve [--configdir dir]
//	checker check proxies.txt
package main

func main() {
	Execute()
}
