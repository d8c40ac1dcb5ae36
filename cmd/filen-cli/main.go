// Command filen-cli is the command-line client and WebDAV bridge for an
// end-to-end encrypted cloud drive: login/session management, path
// resolution, chunked upload/download, batch transfers, trash
// operations, and a mountable WebDAV server (spec §6).
package main

import "os"

func main() {
	os.Exit(Execute())
}
