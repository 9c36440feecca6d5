package pluginapi

// CommandKind tags the variant carried by a Command.
type CommandKind uint8

const (
	CmdCreateTodo CommandKind = iota
	CmdUpdateTodo
	CmdDeleteTodo
	CmdMoveTodo
	CmdSetTodoMetadata
	CmdSetProjectMetadata
	CmdDeleteTodoMetadata
	CmdDeleteProjectMetadata
)

func (k CommandKind) String() string {
	switch k {
	case CmdCreateTodo:
		return "create_todo"
	case CmdUpdateTodo:
		return "update_todo"
	case CmdDeleteTodo:
		return "delete_todo"
	case CmdMoveTodo:
		return "move_todo"
	case CmdSetTodoMetadata:
		return "set_todo_metadata"
	case CmdSetProjectMetadata:
		return "set_project_metadata"
	case CmdDeleteTodoMetadata:
		return "delete_todo_metadata"
	case CmdDeleteProjectMetadata:
		return "delete_project_metadata"
	default:
		return "unknown"
	}
}

// MoveKind tags the placement variant of a MoveTodo.
type MoveKind uint8

const (
	MoveBefore MoveKind = iota
	MoveAfter
	MoveAtIndex
)

// MovePosition describes where a moved item lands: immediately before or
// after a target id, or at an absolute index (clamped to list bounds).
type MovePosition struct {
	Kind  MoveKind
	ID    string
	Index uint32
}

// CreateTodo requests a new item. TempID, when set, lets later commands in
// the same batch reference the freshly generated identifier. ParentID may
// itself be a temp id declared earlier in the batch.
type CreateTodo struct {
	Content  string
	ParentID *string
	TempID   *string
	State    TodoState
	Priority *Priority
	Indent   uint32
}

// UpdateTodo changes the provided fields of an existing item; nil fields are
// left untouched.
type UpdateTodo struct {
	ID          string
	Content     *string
	State       *TodoState
	Priority    *Priority
	DueDate     *string
	Description *string
}

// DeleteTodo soft-deletes an item.
type DeleteTodo struct {
	ID string
}

// MoveTodo repositions an item.
type MoveTodo struct {
	ID       string
	Position MovePosition
}

// SetTodoMetadata writes the calling plugin's metadata document for a todo.
// Data is a JSON object; with Merge the document is merge-patched into the
// existing one, otherwise it replaces it.
type SetTodoMetadata struct {
	TodoID string
	Data   string
	Merge  bool
}

// SetProjectMetadata is SetTodoMetadata for a project, addressed by name.
type SetProjectMetadata struct {
	Project string
	Data    string
	Merge   bool
}

// DeleteTodoMetadata removes the calling plugin's document for a todo.
type DeleteTodoMetadata struct {
	TodoID string
}

// DeleteProjectMetadata removes the calling plugin's document for a project.
type DeleteProjectMetadata struct {
	Project string
}

// Command is a tagged union over the eight mutation requests a plugin can
// emit. Exactly the payload matching Kind is non-nil.
type Command struct {
	Kind              CommandKind
	Create            *CreateTodo
	Update            *UpdateTodo
	Delete            *DeleteTodo
	Move              *MoveTodo
	SetTodoMeta       *SetTodoMetadata
	SetProjectMeta    *SetProjectMetadata
	DeleteTodoMeta    *DeleteTodoMetadata
	DeleteProjectMeta *DeleteProjectMetadata
}

func NewCreateTodo(c CreateTodo) Command { return Command{Kind: CmdCreateTodo, Create: &c} }
func NewUpdateTodo(u UpdateTodo) Command { return Command{Kind: CmdUpdateTodo, Update: &u} }
func NewMoveTodo(m MoveTodo) Command { return Command{Kind: CmdMoveTodo, Move: &m} }

func NewDeleteTodo(id string) Command {
	return Command{Kind: CmdDeleteTodo, Delete: &DeleteTodo{ID: id}}
}

func NewSetTodoMetadata(m SetTodoMetadata) Command {
	return Command{Kind: CmdSetTodoMetadata, SetTodoMeta: &m}
}

func NewSetProjectMetadata(m SetProjectMetadata) Command {
	return Command{Kind: CmdSetProjectMetadata, SetProjectMeta: &m}
}

func NewDeleteTodoMetadata(todoID string) Command {
	return Command{Kind: CmdDeleteTodoMetadata, DeleteTodoMeta: &DeleteTodoMetadata{TodoID: todoID}}
}

func NewDeleteProjectMetadata(project string) Command {
	return Command{Kind: CmdDeleteProjectMetadata, DeleteProjectMeta: &DeleteProjectMetadata{Project: project}}
}
