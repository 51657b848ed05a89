package domain

// Authority codes checked before department operations are dispatched.
const (
	AuthorityAll        = "*"
	AuthorityDeptQuery  = "sys_dept_query"
	AuthorityDeptAdd    = "sys_dept_add"
	AuthorityDeptUpdate = "sys_dept_update"
	AuthorityDeptDelete = "sys_dept_delete"
)
