// Command cdrip extracts audio CDs into WAV files and inspects the recorded
// extraction protocols.
package main
