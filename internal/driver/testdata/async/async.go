package async

import "github.com/kinmemodoki/handa"

type Warehouse struct {
	addr string
}

func NewWarehouse() (*Warehouse, error) {
	return &Warehouse{addr: "inventory:9000"}, nil
}

type Catalog struct {
	w *Warehouse
}

func NewCatalog(w *Warehouse) *Catalog {
	return &Catalog{w: w}
}

type App interface {
	Catalog() *handa.Future[*Catalog]
}

var catalogModule = handa.Module("catalog",
	handa.Async(handa.Provide(NewWarehouse)),
	handa.Async(handa.Provide(NewCatalog)),
)

var _ = handa.Component[App]("NewApp",
	handa.Install(catalogModule),
)
