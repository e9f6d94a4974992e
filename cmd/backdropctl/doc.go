// Command backdropctl works on a backdrop cache without the server.
//
//	backdropctl load <path>...     load files through the cache
//	backdropctl hash <path>...     print content hashes
//	backdropctl scan <dir>         load every file under dir once
//	backdropctl config init -w DIR create the settings file
//	backdropctl config show        print the settings file
//
// --data-dir (default $DATA_DIR or /data) selects the cache. Output is a
// table on a terminal and JSON otherwise, or always with --json.
package main
