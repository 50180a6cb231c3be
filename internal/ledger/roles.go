package ledger

// Roles is the sealed set of capability grants fixed at deployment time.
// Minters may create units, Burners may retire them, and Operators may
// onboard custody records and wire delegates. There is no runtime re-grant:
// the constructor copies its inputs and the struct exposes no mutators.
type Roles struct {
	minters   map[Address]bool
	burners   map[Address]bool
	operators map[Address]bool
}

// NewRoles builds an immutable role table from the given grant lists.
func NewRoles(minters, burners, operators []Address) Roles {
	r := Roles{
		minters:   make(map[Address]bool, len(minters)),
		burners:   make(map[Address]bool, len(burners)),
		operators: make(map[Address]bool, len(operators)),
	}
	for _, a := range minters {
		r.minters[a] = true
	}
	for _, a := range burners {
		r.burners[a] = true
	}
	for _, a := range operators {
		r.operators[a] = true
	}
	return r
}

// Minter reports whether addr holds the Minter grant.
func (r Roles) Minter(addr Address) bool { return r.minters[addr] }

// Burner reports whether addr holds the Burner grant.
func (r Roles) Burner(addr Address) bool { return r.burners[addr] }

// Operator reports whether addr holds the Operator grant.
func (r Roles) Operator(addr Address) bool { return r.operators[addr] }
