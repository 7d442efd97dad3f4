// Command serialapps controls a background daemon that reads decimal codes
// from a serial line and launches the application registered under each code.
//
//	serialapps start     detach the daemon and print the code table
//	serialapps stop      terminate the running daemon
//	serialapps restart   stop, then start
//
// The hidden "daemon" subcommand is the detached process itself.
package main
