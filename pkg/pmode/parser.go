package pmode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/sirosfoundation/go-as4-gateway/pkg/mep"
)

// Parser turns a raw PMode document into a validated Configuration
type Parser interface {
	Parse(raw []byte) (*Configuration, error)
}

// ValidationError lists every problem found in a PMode document
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return "invalid pmode document: " + strings.Join(e.Issues, "; ")
}

// XMLParser reads the configuration document format:
//
//	<configuration party="blue_gw">
//	  <mpcs><mpc name="defaultMpc" qualifiedName="..." default="true"
//	       retention_downloaded="0" retention_undownloaded="14400"/></mpcs>
//	  <businessProcesses>
//	    <parties>
//	      <partyIdTypes><partyIdType name="partyTypeUrn" value="urn:..."/></partyIdTypes>
//	      <party name="red_gw" endpoint="https://...">
//	        <identifier partyId="domibus-red" partyIdType="partyTypeUrn"/>
//	      </party>
//	    </parties>
//	    <meps><mep name="oneway" value="..."/><binding name="pull" value="..."/></meps>
//	    <securities><security name="eDeliveryPolicy" policy="eDeliveryPolicy.xml"/></securities>
//	    <agreements><agreement name="agreement1" value="A1" type=""/></agreements>
//	    <services><service name="noSecService" value="..." type="..."/></services>
//	    <actions><action name="noSecAction" value="..."/></actions>
//	    <legConfigurations>
//	      <legConfiguration name="..." service="..." action="..." security="..." defaultMpc="..."/>
//	    </legConfigurations>
//	    <process name="..." agreement="..." mep="oneway" binding="pull">
//	      <initiatorParties><initiatorParty name="blue_gw"/></initiatorParties>
//	      <responderParties><responderParty name="red_gw"/></responderParties>
//	      <legs><leg name="..."/></legs>
//	    </process>
//	  </businessProcesses>
//	</configuration>
//
// Elements not needed for resolution are ignored.
type XMLParser struct{}

// Parse implements Parser.
func (XMLParser) Parse(raw []byte) (*Configuration, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("parsing pmode document: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != "configuration" {
		return nil, &ValidationError{Issues: []string{"root element must be <configuration>"}}
	}

	b := &builder{cfg: &Configuration{}}
	b.mpcs(root)
	bp := root.SelectElement("businessProcesses")
	if bp == nil {
		b.fail("missing <businessProcesses>")
		return nil, b.err()
	}
	b.parties(bp)
	b.meps(bp)
	b.securities(bp)
	b.agreements(bp)
	b.services(bp)
	b.actions(bp)
	b.legs(bp)
	b.processes(bp)
	b.localParty(root.SelectAttrValue("party", ""))

	if err := b.err(); err != nil {
		return nil, err
	}
	return b.cfg, nil
}

type builder struct {
	cfg      *Configuration
	issues   []string
	idTypes  map[string]string
	mepNames map[string]string
	bindings map[string]string
}

func (b *builder) fail(format string, args ...any) {
	b.issues = append(b.issues, fmt.Sprintf(format, args...))
}

func (b *builder) err() error {
	if len(b.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: b.issues}
}

// name validates an entity name and records it in seen.
func (b *builder) name(kind string, e *etree.Element, seen map[string]bool) (string, bool) {
	name := e.SelectAttrValue("name", "")
	switch {
	case name == "":
		b.fail("%s without name", kind)
		return "", false
	case strings.Contains(name, KeySeparator):
		b.fail("%s name %q must not contain %q", kind, name, KeySeparator)
		return "", false
	case seen[name]:
		b.fail("duplicate %s %q", kind, name)
		return "", false
	}
	seen[name] = true
	return name, true
}

func (b *builder) mpcs(root *etree.Element) {
	seen := map[string]bool{}
	for _, e := range root.FindElements("./mpcs/mpc") {
		name, ok := b.name("mpc", e, seen)
		if !ok {
			continue
		}
		mpc := &Mpc{
			Name:          name,
			QualifiedName: e.SelectAttrValue("qualifiedName", name),
			Default:       e.SelectAttrValue("default", "false") == "true",
		}
		mpc.RetentionDownloaded = b.intAttr(e, "retention_downloaded", 0)
		mpc.RetentionUndownloaded = b.intAttr(e, "retention_undownloaded", -1)
		b.cfg.Mpcs = append(b.cfg.Mpcs, mpc)
	}
}

func (b *builder) intAttr(e *etree.Element, attr string, def int) int {
	v := e.SelectAttrValue(attr, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		b.fail("%s %q: %s is not an integer", e.Tag, e.SelectAttrValue("name", ""), attr)
		return def
	}
	return n
}

func (b *builder) parties(bp *etree.Element) {
	b.idTypes = map[string]string{}
	for _, e := range bp.FindElements("./parties/partyIdTypes/partyIdType") {
		name := e.SelectAttrValue("name", "")
		value := e.SelectAttrValue("value", "")
		if value != "" && !isURI(value) {
			b.fail("partyIdType %q: %q is not a valid URI", name, value)
		}
		b.idTypes[name] = value
	}

	seen := map[string]bool{}
	for _, e := range bp.FindElements("./parties/party") {
		name, ok := b.name("party", e, seen)
		if !ok {
			continue
		}
		party := &Party{Name: name, Endpoint: e.SelectAttrValue("endpoint", "")}
		for _, id := range e.SelectElements("identifier") {
			ident := Identifier{PartyID: id.SelectAttrValue("partyId", "")}
			if ref := id.SelectAttrValue("partyIdType", ""); ref != "" {
				typ, known := b.idTypes[ref]
				if !known {
					b.fail("party %q references unknown partyIdType %q", name, ref)
				}
				ident.PartyIDType = typ
			}
			party.Identifiers = append(party.Identifiers, ident)
		}
		b.cfg.Parties = append(b.cfg.Parties, party)
	}
}

func (b *builder) meps(bp *etree.Element) {
	b.mepNames = map[string]string{}
	b.bindings = map[string]string{}
	for _, e := range bp.FindElements("./meps/mep") {
		b.mepNames[e.SelectAttrValue("name", "")] = e.SelectAttrValue("value", "")
	}
	for _, e := range bp.FindElements("./meps/binding") {
		b.bindings[e.SelectAttrValue("name", "")] = e.SelectAttrValue("value", "")
	}
}

func (b *builder) securities(bp *etree.Element) {
	seen := map[string]bool{}
	for _, e := range bp.FindElements("./securities/security") {
		name, ok := b.name("security", e, seen)
		if !ok {
			continue
		}
		b.cfg.Securities = append(b.cfg.Securities, &Security{
			Name:            name,
			Policy:          e.SelectAttrValue("policy", ""),
			SignatureMethod: e.SelectAttrValue("signatureMethod", ""),
		})
	}
}

func (b *builder) agreements(bp *etree.Element) {
	seen := map[string]bool{}
	for _, e := range bp.FindElements("./agreements/agreement") {
		name, ok := b.name("agreement", e, seen)
		if !ok {
			continue
		}
		b.cfg.Agreements = append(b.cfg.Agreements, &Agreement{
			Name:  name,
			Value: e.SelectAttrValue("value", ""),
			Type:  e.SelectAttrValue("type", ""),
		})
	}
}

func (b *builder) services(bp *etree.Element) {
	seen := map[string]bool{}
	for _, e := range bp.FindElements("./services/service") {
		name, ok := b.name("service", e, seen)
		if !ok {
			continue
		}
		b.cfg.Services = append(b.cfg.Services, &Service{
			Name:  name,
			Value: e.SelectAttrValue("value", ""),
			Type:  e.SelectAttrValue("type", ""),
		})
	}
}

func (b *builder) actions(bp *etree.Element) {
	seen := map[string]bool{}
	for _, e := range bp.FindElements("./actions/action") {
		name, ok := b.name("action", e, seen)
		if !ok {
			continue
		}
		b.cfg.Actions = append(b.cfg.Actions, &Action{Name: name, Value: e.SelectAttrValue("value", "")})
	}
}

func (b *builder) legs(bp *etree.Element) {
	seen := map[string]bool{}
	for _, e := range bp.FindElements("./legConfigurations/legConfiguration") {
		name, ok := b.name("legConfiguration", e, seen)
		if !ok {
			continue
		}
		leg := &LegConfiguration{Name: name}
		leg.Service = findNamed(b.cfg.Services, e.SelectAttrValue("service", ""), func(s *Service) string { return s.Name })
		if leg.Service == nil {
			b.fail("leg %q references unknown service %q", name, e.SelectAttrValue("service", ""))
		}
		leg.Action = findNamed(b.cfg.Actions, e.SelectAttrValue("action", ""), func(a *Action) string { return a.Name })
		if leg.Action == nil {
			b.fail("leg %q references unknown action %q", name, e.SelectAttrValue("action", ""))
		}
		if ref := e.SelectAttrValue("security", ""); ref != "" {
			leg.Security = findNamed(b.cfg.Securities, ref, func(s *Security) string { return s.Name })
			if leg.Security == nil {
				b.fail("leg %q references unknown security %q", name, ref)
			}
		}
		if ref := e.SelectAttrValue("defaultMpc", ""); ref != "" {
			leg.DefaultMpc = findNamed(b.cfg.Mpcs, ref, func(m *Mpc) string { return m.Name })
			if leg.DefaultMpc == nil {
				b.fail("leg %q references unknown mpc %q", name, ref)
			}
		}
		b.cfg.Legs = append(b.cfg.Legs, leg)
	}
}

func (b *builder) processes(bp *etree.Element) {
	seen := map[string]bool{}
	owner := map[string]string{}
	for _, e := range bp.SelectElements("process") {
		name, ok := b.name("process", e, seen)
		if !ok {
			continue
		}
		process := &Process{Name: name}

		if ref := e.SelectAttrValue("agreement", ""); ref != "" {
			process.Agreement = findNamed(b.cfg.Agreements, ref, func(a *Agreement) string { return a.Name })
			if process.Agreement == nil {
				b.fail("process %q references unknown agreement %q", name, ref)
			}
		}

		m, err := mep.ParseMEP(b.lookup(b.mepNames, e.SelectAttrValue("mep", "")))
		if err != nil {
			b.fail("process %q: %v", name, err)
		}
		process.MEP = m
		binding, err := mep.ParseBinding(b.lookup(b.bindings, e.SelectAttrValue("binding", "")))
		if err != nil {
			b.fail("process %q: %v", name, err)
		} else if m != "" && !binding.Compatible(m) {
			b.fail("process %q: binding %s cannot carry mep %s", name, binding.Short(), m)
		}
		process.Binding = binding

		process.Initiators = b.partyRefs(name, e.FindElements("./initiatorParties/initiatorParty"))
		process.Responders = b.partyRefs(name, e.FindElements("./responderParties/responderParty"))

		for _, l := range e.FindElements("./legs/leg") {
			ref := l.SelectAttrValue("name", "")
			leg := findNamed(b.cfg.Legs, ref, func(lc *LegConfiguration) string { return lc.Name })
			if leg == nil {
				b.fail("process %q references unknown leg %q", name, ref)
				continue
			}
			if other, taken := owner[ref]; taken {
				b.fail("leg %q belongs to both process %q and %q", ref, other, name)
				continue
			}
			owner[ref] = name
			process.Legs = append(process.Legs, leg)
		}
		b.cfg.Processes = append(b.cfg.Processes, process)
	}
}

// lookup resolves a name declared under <meps>, falling back to the raw value.
func (b *builder) lookup(declared map[string]string, ref string) string {
	if v, ok := declared[ref]; ok && v != "" {
		return v
	}
	return ref
}

func (b *builder) partyRefs(process string, refs []*etree.Element) []*Party {
	var parties []*Party
	for _, e := range refs {
		ref := e.SelectAttrValue("name", "")
		party := findNamed(b.cfg.Parties, ref, func(p *Party) string { return p.Name })
		if party == nil {
			b.fail("process %q references unknown party %q", process, ref)
			continue
		}
		parties = append(parties, party)
	}
	return parties
}

func (b *builder) localParty(name string) {
	if name == "" {
		b.fail("configuration must name the local party")
		return
	}
	b.cfg.Party = findNamed(b.cfg.Parties, name, func(p *Party) string { return p.Name })
	if b.cfg.Party == nil {
		b.fail("local party %q is not configured", name)
	}
}

func findNamed[T any](items []T, name string, nameOf func(T) string) T {
	for _, item := range items {
		if nameOf(item) == name {
			return item
		}
	}
	var zero T
	return zero
}
