package infinity

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ListSystems returns the serial numbers of the systems registered to the
// account, in portal order. The list is cached for the life of the Client.
func (c *Client) ListSystems(ctx context.Context) ([]string, error) {
	if c.systems != nil {
		return c.systems, nil
	}

	doc, err := c.fetchXML(ctx, "/users/"+c.username+"/locations")
	if err != nil {
		return nil, err
	}

	// The locations document is Atom; system serials live in link hrefs
	// of the form .../systems/{serial}.
	var serials []string
	walkElements(doc.Root(), func(el *etree.Element) {
		if el.Tag != "link" {
			return
		}
		href := el.SelectAttrValue("href", "")
		_, rest, found := strings.Cut(href, "/systems/")
		if !found {
			return
		}
		if serial, _, _ := strings.Cut(rest, "/"); serial != "" {
			serials = append(serials, serial)
		}
	})

	c.systems = serials
	return serials, nil
}

// Keepalive sends the activate signal that keeps the cloud session attached
// to the account's systems. Some accounts require this before status reads
// reflect current data.
func (c *Client) Keepalive(ctx context.Context) error {
	_, err := c.do(ctx, apiRequest{
		method:     http.MethodPost,
		path:       "/users/" + c.username + "/activateSystems",
		acceptJSON: true,
	})
	return err
}

// keepaliveLenient fires the activate signal but never fails the caller's
// operation over it.
func (c *Client) keepaliveLenient(ctx context.Context) {
	if err := c.Keepalive(ctx); err != nil {
		if c.logger != nil {
			c.logger.Warnw("keepalive failed, continuing", "error", err)
		}
	}
}

// FetchProfile returns the zone slots of a system: id, display name, and
// whether the slot is physically present. Presence comes from the profile
// document, names from the config document. The result is cached per serial.
func (c *Client) FetchProfile(ctx context.Context, serial string) ([]ZoneProfile, error) {
	if cached, ok := c.profiles[serial]; ok {
		return cached, nil
	}

	profileDoc, err := c.fetchXML(ctx, "/systems/"+serial+"/profile")
	if err != nil {
		return nil, err
	}
	configDoc, err := c.fetchConfigDoc(ctx, serial)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string)
	for _, zone := range zoneElements(configDoc.Root()) {
		id := zone.SelectAttrValue("id", "")
		if name := childText(zone, "name"); name != "" {
			names[id] = name
		}
	}

	var profiles []ZoneProfile
	for _, zone := range zoneElements(profileDoc.Root()) {
		id := zone.SelectAttrValue("id", "")
		name := names[id]
		if name == "" {
			name = "Zone " + id
		}
		profiles = append(profiles, ZoneProfile{
			ID:      id,
			Name:    name,
			Present: childText(zone, "present") == "on",
		})
	}

	c.profiles[serial] = profiles
	return profiles, nil
}

// FetchStatus retrieves a system's live readings and composes them with the
// zone profile into a System. Zones whose slot is not present are filtered
// out; the remaining zones keep the thermostat's reporting order.
func (c *Client) FetchStatus(ctx context.Context, serial string) (*System, error) {
	c.keepaliveLenient(ctx)

	profiles, err := c.FetchProfile(ctx, serial)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]ZoneProfile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	doc, err := c.fetchXML(ctx, "/systems/"+serial+"/status")
	if err != nil {
		return nil, err
	}
	root := doc.Root()

	sys := &System{
		Serial:      serial,
		OutdoorTemp: childFloat(root, "oat"),
		Mode:        normalizeMode(childText(root, "mode")),
	}

	for _, zoneEl := range zoneElements(root) {
		id := zoneEl.SelectAttrValue("id", "")
		profile, known := byID[id]
		if known && !profile.Present {
			continue
		}
		name := profile.Name
		if name == "" {
			name = "Zone " + id
		}
		zone := Zone{
			ID:           id,
			Name:         name,
			Temp:         childFloat(zoneEl, "rt"),
			Humidity:     childFloat(zoneEl, "rh"),
			Activity:     childTextDefault(zoneEl, "currentActivity", "unknown"),
			HeatSetpoint: childFloat(zoneEl, "htsp"),
			CoolSetpoint: childFloat(zoneEl, "clsp"),
			Fan:          childTextDefault(zoneEl, "fan", "auto"),
			Status:       childTextDefault(zoneEl, "zoneconditioning", "idle"),
			Hold:         childText(zoneEl, "hold") == "on",
			HoldUntil:    childText(zoneEl, "otmr"),
		}
		sys.Zones = append(sys.Zones, zone)
	}

	return sys, nil
}

// fetchConfigDoc retrieves a system's full config document. The document is
// mutated in place and posted back for writes, so unknown vendor elements
// must survive; that is why it stays a generic element tree.
func (c *Client) fetchConfigDoc(ctx context.Context, serial string) (*etree.Document, error) {
	return c.fetchXML(ctx, "/systems/"+serial+"/config")
}

// pushConfigDoc refreshes the document's timestamp and posts it back.
func (c *Client) pushConfigDoc(ctx context.Context, serial string, doc *etree.Document) error {
	if ts := doc.Root().SelectElement("timestamp"); ts != nil {
		ts.SetText(c.signer.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	}

	xmlStr, err := doc.WriteToString()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(xmlStr, "<?xml") {
		xmlStr = `<?xml version="1.0"?>` + xmlStr
	}

	_, err = c.do(ctx, apiRequest{
		method: http.MethodPost,
		path:   "/systems/" + serial + "/config",
		form:   map[string][]string{"data": {xmlStr}},
	})
	return err
}

// zoneElements returns the zone children of a document root's zones element.
func zoneElements(root *etree.Element) []*etree.Element {
	if root == nil {
		return nil
	}
	zones := root.SelectElement("zones")
	if zones == nil {
		return nil
	}
	return zones.SelectElements("zone")
}

func walkElements(el *etree.Element, visit func(*etree.Element)) {
	if el == nil {
		return
	}
	visit(el)
	for _, child := range el.ChildElements() {
		walkElements(child, visit)
	}
}

func childText(el *etree.Element, tag string) string {
	child := el.SelectElement(tag)
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.Text())
}

func childTextDefault(el *etree.Element, tag, fallback string) string {
	if s := childText(el, tag); s != "" {
		return s
	}
	return fallback
}

func childFloat(el *etree.Element, tag string) float64 {
	f, err := strconv.ParseFloat(childText(el, tag), 64)
	if err != nil {
		return 0
	}
	return f
}
