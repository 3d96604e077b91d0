package dsmt

// Tribool is a three valued truth value.
type Tribool int8

const (
	False Tribool = iota
	True
	Unknown
)

// TriboolOf converts a known boolean.
func TriboolOf(b bool) Tribool {
	if b {
		return True
	}
	return False
}

func (t Tribool) String() string {
	switch t {
	case True:
		return "1"
	case False:
		return "0"
	}
	return "X"
}

func (t Tribool) IsKnown() bool {
	return t == True || t == False
}

func (t Tribool) Not() Tribool {
	switch t {
	case True:
		return False
	case False:
		return True
	}
	return Unknown
}

func (t Tribool) And(o Tribool) Tribool {
	if t == False || o == False {
		return False
	}
	if t == True && o == True {
		return True
	}
	return Unknown
}

func (t Tribool) Or(o Tribool) Tribool {
	if t == True || o == True {
		return True
	}
	if t == False && o == False {
		return False
	}
	return Unknown
}
