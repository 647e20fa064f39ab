// Package archive reads and writes the NAR byte format.
//
// A NAR serializes one directory tree deterministically: every string is a
// little-endian uint64 length followed by the bytes and zero padding to an
// 8-byte boundary, and directory entries appear in ascending name order.
//
// [Parse] turns an archive stream into a depth-first sequence of [Sink]
// events. It never reads past the bytes it needs, so wrapping the source in a
// [CountingReader] gives the exact archive offset of every file's content.
// [Dump] serializes any fsaccess.Accessor subtree back into a NAR.
package archive
