/*
Package vouchfs provides CLI tooling for a content addressed,
deduplicating file store.

Files are split into fixed size chunks and addressed by the digests of
their content: identical chunks are stored once no matter how many files
reference them. Every file carries a Merkle root over its chunk digests
that is re-verified on download, and files can be shared through hash
commitments that recipients verify on reveal.
*/
package vouchfs
