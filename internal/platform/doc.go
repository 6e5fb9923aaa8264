// Package platform contains filesystem glue: save directory handling, song
// file naming, atomic writes of downloaded songs, and the catalog naming
// convention shared by the client and the catalog server.
package platform
