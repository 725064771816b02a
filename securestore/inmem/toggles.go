package inmem

import (
	"errors"
	"sync/atomic"
)

var (
	ErrQueryDisabled  = errors.New("query operations disabled in inmem storage")
	ErrAddDisabled    = errors.New("add operations disabled in inmem storage")
	ErrUpdateDisabled = errors.New("update operations disabled in inmem storage")
	ErrDeleteDisabled = errors.New("delete operations disabled in inmem storage")
)

func setToggle(target *uint32, fail bool) {
	var val uint32
	if fail {
		val = 1
	}
	atomic.StoreUint32(target, val)
}

func (i *InmemStorage) FailQuery(fail bool) {
	setToggle(i.failQuery, fail)
}

func (i *InmemStorage) FailAdd(fail bool) {
	setToggle(i.failAdd, fail)
}

func (i *InmemStorage) FailUpdate(fail bool) {
	setToggle(i.failUpdate, fail)
}

func (i *InmemStorage) FailDelete(fail bool) {
	setToggle(i.failDelete, fail)
}
