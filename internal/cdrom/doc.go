// Package cdrom talks to Linux CD-ROM drives: it reads the table of
// contents and raw audio frames through ioctls, reports the drive state, and
// wraps frame reads in a Reader that retries, verifies by re-reading, honors
// the drive's sample offset, and reports every correction through the
// callback contract of package cdda.
package cdrom
