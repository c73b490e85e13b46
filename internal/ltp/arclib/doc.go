// Package arclib implements the ARCLib connector.
//
// SIPs carry METS metadata in metadata/metadata.xml and are packaged with
// the unit directory as the archive root. Every transfer logs in first; the
// bearer token from that login is reused for status polling and the
// ingest-workflow lookup that yields the SIP id.
package arclib
