// Command srvlocate resolves a hosted game server's domain to the hosts,
// addresses and ports published behind its SRV record.
//
//	srvlocate myserver.aternos.me
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
