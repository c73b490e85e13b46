package arclib

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"time"

	"ltpexport/internal/fieldconfig"
	"ltpexport/internal/metadata"
)

// METS namespaces and schema location written on the root element.
const (
	NamespaceMETS  = "http://www.loc.gov/METS/"
	NamespaceXSI   = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceXLink = "http://www.w3.org/1999/xlink"
	SchemaLocation = "http://www.loc.gov/METS/ http://www.loc.gov/standards/mets/version1121/mets.xsd"
)

// AuthorialID returns "<uid>_<unix seconds>". ARCLib rejects repeated
// authorial ids, so every export gets a fresh one.
func AuthorialID(uid string, now time.Time) string {
	return uid + "_" + strconv.FormatInt(now.Unix(), 10)
}

// WriteMETS writes the METS document for records to w. The first dmdSec holds
// the authorial id; each record follows in its own dmdSec_metadata_<i>.
func WriteMETS(w io.Writer, authorialID string, records []metadata.Record, now time.Time) error {
	stamp := now.Format(time.RFC3339)
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	root := start("mets:mets",
		"xmlns:mets", NamespaceMETS,
		"xmlns:xsi", NamespaceXSI,
		"xmlns:xlink", NamespaceXLink,
		"xsi:schemaLocation", SchemaLocation,
	)
	if err := enc.EncodeToken(root); err != nil {
		return err
	}
	hdr := start("mets:metsHdr", "CREATEDATE", stamp, "LASTMODDATE", stamp)
	if err := encodeEmpty(enc, hdr); err != nil {
		return err
	}

	authorial := []metadata.Field{{Name: "authorial_id", Value: authorialID}}
	if err := encodeDmdSec(enc, "dmdSec_authorial_id", stamp, authorial); err != nil {
		return err
	}
	for i, r := range records {
		if err := encodeDmdSec(enc, fmt.Sprintf("dmdSec_metadata_%d", i), stamp, r.Values()); err != nil {
			return err
		}
	}

	if err := enc.EncodeToken(root.End()); err != nil {
		return err
	}
	if err := enc.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func encodeDmdSec(enc *xml.Encoder, id, stamp string, fields []metadata.Field) error {
	sec := start("mets:dmdSec", "ID", id, "CREATED", stamp, "STATUS", "original")
	wrap := start("mets:mdWrap", "MDTYPE", "OTHER", "OTHERMDTYPE", "CUSTOM")
	data := start("mets:xmlData")
	for _, tok := range []xml.Token{sec, wrap, data} {
		if err := enc.EncodeToken(tok); err != nil {
			return err
		}
	}
	for _, f := range fields {
		if !fieldconfig.ValidName(f.Name) {
			return fmt.Errorf("field name %q is not a valid XML element name", f.Name)
		}
		if err := enc.EncodeElement(f.Value, start(f.Name)); err != nil {
			return fmt.Errorf("encode field %q: %w", f.Name, err)
		}
	}
	for _, tok := range []xml.Token{data.End(), wrap.End(), sec.End()} {
		if err := enc.EncodeToken(tok); err != nil {
			return err
		}
	}
	return nil
}

func encodeEmpty(enc *xml.Encoder, el xml.StartElement) error {
	if err := enc.EncodeToken(el); err != nil {
		return err
	}
	return enc.EncodeToken(el.End())
}

// start builds an element whose prefixed names are written verbatim.
func start(name string, attrs ...string) xml.StartElement {
	el := xml.StartElement{Name: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	return el
}
