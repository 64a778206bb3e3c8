package feed

import (
	"bytes"
	"encoding/xml"
	"strings"
)

// Wire shapes of the upstream XML dialect. Pointer fields distinguish a
// missing element from an empty one.

type xmlSchedule struct {
	XMLName  xml.Name    `xml:"plan-zajec"`
	Type     string      `xml:"typ,attr"`
	ID       string      `xml:"id,attr"`
	TargetID *string     `xml:"idcel,attr"`
	Name     string      `xml:"nazwa,attr"`
	Periods  []xmlPeriod `xml:"okres"`
	Items    []xmlItem   `xml:"zajecia"`
}

type xmlPeriod struct {
	From     string `xml:"od,attr"`
	To       string `xml:"do,attr"`
	Selected string `xml:"wybrany,attr"`
}

type xmlText struct {
	Text string `xml:",chardata"`
}

type xmlLecturer struct {
	Text   string  `xml:",chardata"`
	Moodle *string `xml:"moodle,attr"`
}

type xmlAnchor struct {
	XMLName xml.Name
	Href    string `xml:"href,attr"`
	Text    string `xml:",chardata"`
}

type xmlRoom struct {
	Text   string     `xml:",chardata"`
	Anchor *xmlAnchor `xml:"a"`
}

type xmlItem struct {
	Date      *xmlText      `xml:"termin"`
	From      *xmlText      `xml:"od-godz"`
	To        *xmlText      `xml:"do-godz"`
	Subject   *xmlText      `xml:"przedmiot"`
	Type      *xmlText      `xml:"typ"`
	Lecturers []xmlLecturer `xml:"nauczyciel"`
	Room      *xmlRoom      `xml:"sala"`
	Groups    *xmlText      `xml:"grupa"`
	Note      *xmlText      `xml:"uwagi"`
}

type xmlGroupingIndex struct {
	XMLName   xml.Name `xml:"plan-zajec"`
	Groupings []struct {
		Type  string `xml:"typ,attr"`
		Group string `xml:"grupa,attr"`
	} `xml:"grupowanie"`
}

type xmlHeaderIndex struct {
	XMLName   xml.Name `xml:"plan-zajec"`
	Resources []struct {
		ID   string `xml:"id,attr"`
		Name string `xml:"nazwa,attr"`
	} `xml:"zasob"`
}

// decode unmarshals an upstream document. HTML named entities are accepted
// because upstream emits them in free-text fields.
func decode(body []byte, v any) error {
	d := xml.NewDecoder(bytes.NewReader(body))
	d.Entity = xml.HTMLEntity
	return d.Decode(v)
}

// decodeAnchor parses an HTML anchor that upstream embeds as text inside
// the room element for online classes.
func decodeAnchor(s string) (*xmlAnchor, error) {
	var a xmlAnchor
	d := xml.NewDecoder(strings.NewReader(s))
	d.Strict = false
	d.AutoClose = xml.HTMLAutoClose
	d.Entity = xml.HTMLEntity
	if err := d.Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}
