// Package cdda holds the Red Book constants, read-callback status codes and
// the transport contract shared by the extraction engine and the drive
// backends.
//
// A Transport combines sector range lookups for a loaded disc with the
// blocking "read one sector" operation of a read-correction layer. The
// read operation reports what happened while producing the sector through
// a Callback, invoked synchronously zero or more times before ReadSector
// returns.
package cdda
