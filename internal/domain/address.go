package domain

// Address is the delivery address buffer edited during checkout.
type Address struct {
	Name                 string `json:"name"`
	Phone                string `json:"phone"`
	Street               string `json:"street"`
	City                 string `json:"city"`
	State                string `json:"state"`
	Country              string `json:"country"`
	Zipcode              string `json:"zipcode"`
	DeliveryInstructions string `json:"delivery_instructions,omitempty"`
}

// AddressPatch is a partial edit of the delivery form. Nil fields are left
// untouched. Email lives beside the address on the wizard but is edited on
// the same form.
type AddressPatch struct {
	Name                 *string `json:"name,omitempty"`
	Phone                *string `json:"phone,omitempty"`
	Email                *string `json:"email,omitempty"`
	Street               *string `json:"street,omitempty"`
	City                 *string `json:"city,omitempty"`
	State                *string `json:"state,omitempty"`
	Country              *string `json:"country,omitempty"`
	Zipcode              *string `json:"zipcode,omitempty"`
	DeliveryInstructions *string `json:"delivery_instructions,omitempty"`
}

// FieldErrors maps a form field to a human-readable message. A key is present
// only while that field is invalid.
type FieldErrors map[string]string

// Valid reports whether no field is in error.
func (fe FieldErrors) Valid() bool {
	return len(fe) == 0
}

// Clear drops the errors of the given fields.
func (fe FieldErrors) Clear(fields ...string) {
	for _, f := range fields {
		delete(fe, f)
	}
}

// apply copies the set fields of p into the address and email and returns
// the names of the fields it touched.
func (p AddressPatch) apply(a *Address, email *string) []string {
	var touched []string
	set := func(name string, dst *string, v *string) {
		if v != nil {
			*dst = *v
			touched = append(touched, name)
		}
	}
	set("name", &a.Name, p.Name)
	set("phone", &a.Phone, p.Phone)
	set("email", email, p.Email)
	set("street", &a.Street, p.Street)
	set("city", &a.City, p.City)
	set("state", &a.State, p.State)
	set("country", &a.Country, p.Country)
	set("zipcode", &a.Zipcode, p.Zipcode)
	set("delivery_instructions", &a.DeliveryInstructions, p.DeliveryInstructions)
	return touched
}
