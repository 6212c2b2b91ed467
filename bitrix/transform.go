// ABOUTME: Reshapes raw Bitrix records into canonical deals and tasks
// ABOUTME: Source fields are kept verbatim; canonical display fields are laid over them
package bitrix

import (
	"strings"
	"unicode/utf8"

	"github.com/harperreed/crmpulse/models"
	"github.com/harperreed/crmpulse/normalize"
)

// Separator joins multi-valued fields.
const Separator = ", "

// DefaultCurrency applies when a deal has no currency.
const DefaultCurrency = "RUB"

// crmPrefixes maps typed crm reference prefixes to entity kinds.
var crmPrefixes = []struct {
	prefix string
	entity string
}{
	{"CO_", EntityCompanies},
	{"C_", EntityContacts},
}

// refs are the foreign ids a batch points at.
type refs struct {
	users     *idSet
	contacts  *idSet
	companies *idSet
}

func newRefs() refs {
	return refs{users: newIDSet(), contacts: newIDSet(), companies: newIDSet()}
}

// crmRef classifies one custom-field value as a contact or company id.
func crmRef(value string, meta FieldMeta) (entity, id string) {
	for _, p := range crmPrefixes {
		if strings.HasPrefix(value, p.prefix) {
			return p.entity, strings.TrimPrefix(value, p.prefix)
		}
	}
	if len(meta.CRMTargets) == 1 {
		switch meta.CRMTargets[0] {
		case "CONTACT":
			return EntityContacts, value
		case "COMPANY":
			return EntityCompanies, value
		}
	}
	return "", ""
}

func isCustomField(name string) bool {
	return strings.HasPrefix(name, "UF_")
}

// collectDealRefs gathers user, contact, and company ids from deals,
// including typed references embedded in custom fields.
func collectDealRefs(records []Record, meta map[string]FieldMeta) refs {
	r := newRefs()
	for _, rec := range records {
		r.users.add(str(rec["ASSIGNED_BY_ID"]))
		r.contacts.add(str(rec["CONTACT_ID"]))
		r.contacts.add(list(rec["CONTACT_IDS"])...)
		r.companies.add(str(rec["COMPANY_ID"]))

		for name, v := range rec {
			if !isCustomField(name) {
				continue
			}
			m := meta[name]
			if m.Type != "crm" && !hasTypedRef(v) {
				continue
			}
			for _, value := range list(v) {
				switch entity, id := crmRef(value, m); entity {
				case EntityContacts:
					r.contacts.add(id)
				case EntityCompanies:
					r.companies.add(id)
				}
			}
		}
	}
	return r
}

func hasTypedRef(v any) bool {
	for _, value := range list(v) {
		if e, _ := crmRef(value, FieldMeta{}); e != "" {
			return true
		}
	}
	return false
}

func collectTaskRefs(records []Record) refs {
	r := newRefs()
	for _, rec := range records {
		r.users.add(str(rec["createdBy"]), str(rec["responsibleId"]))
	}
	return r
}

// dealShaper turns raw deals into canonical ones.
type dealShaper struct {
	vocab     *normalize.Vocabulary
	meta      map[string]FieldMeta
	stages    map[string]string
	users     ResolveReport
	contacts  ResolveReport
	companies ResolveReport
}

func (s *dealShaper) shape(rec Record) models.Deal {
	extra := make(map[string]any, len(rec))
	for k, v := range rec {
		extra[models.DealExtraKey(k)] = v
	}
	for name, v := range rec {
		if isCustomField(name) {
			if expanded, ok := s.expand(name, v); ok {
				extra[models.DealExtraKey(name)] = expanded
			}
		}
	}

	responsible := models.UnknownLabel
	if id := str(rec["ASSIGNED_BY_ID"]); !isEmptyID(id) {
		responsible = s.vocab.NormalizeName(s.users.Name(id))
	}

	deal := models.Deal{
		DealID:      str(rec["ID"]),
		Title:       strings.TrimSpace(str(rec["TITLE"])),
		Responsible: responsible,
		Stage:       s.stage(str(rec["STAGE_ID"])),
		CreatedAt:   normalize.NormalizeDate(str(rec["DATE_CREATE"])),
		ModifiedAt:  normalize.NormalizeDate(str(rec["DATE_MODIFY"])),
		Department:  s.vocab.Department(responsible),
		Currency:    str(rec["CURRENCY_ID"]),
		Company:     models.DashLabel,
		Contact:     models.DashLabel,
		Comments:    strings.TrimSpace(str(rec["COMMENTS"])),
		Extra:       extra,
	}
	if amount, ok := normalize.ParseAmount(str(rec["OPPORTUNITY"])); ok {
		deal.Amount = amount
	}
	if deal.Currency == "" {
		deal.Currency = DefaultCurrency
	}
	if id := str(rec["COMPANY_ID"]); !isEmptyID(id) {
		deal.Company = s.companies.Name(id)
	}

	contactIDs := list(rec["CONTACT_IDS"])
	if id := str(rec["CONTACT_ID"]); !isEmptyID(id) && len(contactIDs) == 0 {
		contactIDs = []string{id}
	}
	var contacts []string
	for _, id := range contactIDs {
		if !isEmptyID(id) {
			contacts = append(contacts, s.contacts.Name(id))
		}
	}
	if len(contacts) > 0 {
		deal.Contact = strings.Join(contacts, Separator)
	}

	return deal
}

// stage maps a stage id to its funnel name, then canonicalizes it. Unknown
// ids drop their "C<n>:" funnel prefix before canonicalization.
func (s *dealShaper) stage(id string) string {
	if id == "" {
		return ""
	}
	if name, ok := s.stages[id]; ok && name != "" {
		return s.vocab.NormalizeStage(name)
	}
	if i := strings.LastIndex(id, ":"); i >= 0 {
		id = id[i+1:]
	}
	return s.vocab.NormalizeStage(id)
}

// expand replaces enumeration ids with labels and crm references with
// names. Multi-valued fields are joined.
func (s *dealShaper) expand(name string, v any) (string, bool) {
	meta := s.meta[name]
	values := list(v)
	if len(values) == 0 {
		return "", false
	}

	changed := false
	out := make([]string, 0, len(values))
	for _, value := range values {
		if label, ok := meta.Enum[value]; ok {
			out = append(out, label)
			changed = true
			continue
		}
		switch entity, id := crmRef(value, meta); entity {
		case EntityContacts:
			out = append(out, s.contacts.Name(id))
			changed = true
		case EntityCompanies:
			out = append(out, s.companies.Name(id))
			changed = true
		default:
			out = append(out, value)
		}
	}
	if !changed {
		return "", false
	}
	return strings.Join(out, Separator), true
}

// taskShaper turns raw tasks into canonical ones.
type taskShaper struct {
	vocab *normalize.Vocabulary
	users ResolveReport
	limit int
}

func (s *taskShaper) shape(rec Record) models.Task {
	extra := make(map[string]any, len(rec))
	for k, v := range rec {
		extra[models.TaskExtraKey(k)] = v
	}

	return models.Task{
		ID:          str(rec["id"]),
		Title:       strings.TrimSpace(str(rec["title"])),
		Creator:     s.person(rec, "createdBy", "creator"),
		Assignee:    s.person(rec, "responsibleId", "responsible"),
		Status:      s.vocab.NormalizeStatus(str(rec["status"])),
		Priority:    s.vocab.NormalizePriority(str(rec["priority"])),
		CreatedAt:   normalize.NormalizeDate(str(rec["createdDate"])),
		ClosedAt:    normalize.NormalizeDate(str(rec["closedDate"])),
		Description: Truncate(strings.TrimSpace(str(rec["description"])), s.limit),
		Extra:       extra,
	}
}

// person resolves a user id field, falling back to the embedded user
// object the task list returns, then to the raw id.
func (s *taskShaper) person(rec Record, idField, objField string) string {
	id := str(rec[idField])
	if isEmptyID(id) {
		return models.UnknownLabel
	}
	if name, ok := s.users.Names[id]; ok && name != "" {
		return s.vocab.NormalizeName(name)
	}
	if obj, ok := rec[objField].(map[string]any); ok {
		if name := strings.TrimSpace(str(obj["name"])); name != "" {
			return s.vocab.NormalizeName(name)
		}
	}
	return id
}

// Truncate caps s at limit runes. A limit of zero or less disables the cap.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
