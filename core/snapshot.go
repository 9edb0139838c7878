package core

// EntityCache keeps a copy of every bank and account an action may write,
// taken before the first write, so a failed action can put them back.
// Decimals are immutable values, so a struct copy is a full snapshot.
type EntityCache struct {
	banks    map[*Bank]Bank
	accounts map[*Account]Account
}

func NewEntityCache() *EntityCache {
	return &EntityCache{
		banks:    make(map[*Bank]Bank),
		accounts: make(map[*Account]Account),
	}
}

func (c *EntityCache) TrackBank(banks ...*Bank) {
	for _, b := range banks {
		if b == nil {
			continue
		}
		if _, ok := c.banks[b]; !ok {
			c.banks[b] = *b
		}
	}
}

func (c *EntityCache) TrackAccount(accounts ...*Account) {
	for _, a := range accounts {
		if a == nil {
			continue
		}
		if _, ok := c.accounts[a]; !ok {
			c.accounts[a] = *a
		}
	}
}

func (c *EntityCache) TrackBankSet(banks BankSet) {
	for _, b := range banks {
		c.TrackBank(b)
	}
}

// Restore writes the saved copies back in place.
func (c *EntityCache) Restore() {
	for b, saved := range c.banks {
		*b = saved
	}
	for a, saved := range c.accounts {
		*a = saved
	}
}

func (c *EntityCache) Len() int {
	return len(c.banks) + len(c.accounts)
}
