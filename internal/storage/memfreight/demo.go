package memfreight

import "github.com/BearBump/FreightBox/internal/models"

// Demo holds the ids SeedDemo created.
type Demo struct {
	HQ          uint64
	BranchGroup uint64
	BranchA     uint64
	BranchB     uint64
	GoodsYard   uint64
	Admin       uint64
	BranchAUser uint64
	BranchBUser uint64
	YardUser    uint64
	Truck       uint64
	VIPCustomer uint64
}

// SeedDemo fills an empty store with a minimal company: a head office, a goods
// yard and two branches, one admin per department and a truck.
func SeedDemo(s *Store) Demo {
	var d Demo

	hq := s.PutDepartment(&models.Department{Name: "Head office"})
	d.HQ = hq.ID
	group := s.PutDepartment(&models.Department{Name: "Branches", ParentID: &d.HQ, IsBranchGroup: true})
	d.BranchGroup = group.ID

	yard := s.PutDepartment(&models.Department{Name: "Goods yard", ParentID: &d.HQ, IsGoodsYard: true, EnableDst: true})
	d.GoodsYard = yard.ID

	branch := func(name string) uint64 {
		return s.PutDepartment(&models.Department{
			Name: name, ParentID: &d.BranchGroup, UnitPrice: 1,
			EnableSrc: true, EnableDst: true, EnableCargoPrice: true,
		}).ID
	}
	d.BranchA = branch("Branch A")
	d.BranchB = branch("Branch B")

	for _, dep := range []struct {
		id   uint64
		name string
		dst  *uint64
	}{
		{d.HQ, "admin", &d.Admin},
		{d.BranchA, "branch-a", &d.BranchAUser},
		{d.BranchB, "branch-b", &d.BranchBUser},
		{d.GoodsYard, "goods-yard", &d.YardUser},
	} {
		*dep.dst = s.PutUser(&models.User{
			Name: dep.name, DepartmentID: dep.id, Enabled: true,
			Administrator: dep.id == d.HQ, Permissions: models.AllPermissions(),
		}).ID
	}

	d.Truck = s.PutTruck(&models.Truck{NumberPlate: "A001AA", Enabled: true}).ID
	d.VIPCustomer = s.PutCustomer(&models.Customer{Name: "VIP sender", Phone: "100", Enabled: true, IsVIP: true}).ID
	return d
}
