package extract

import (
	"strings"

	"github.com/WessleyAI/wessley-kg/engine/kg"
)

// PromptVersion identifies the instruction template. Bump it whenever the
// template text changes.
const PromptVersion = "kg-extract/1"

// SystemPrompt is the persona backends send as their system message.
const SystemPrompt = "You are Graphify. Your mission is to transform unstructured content " +
	"into structured graph data. Extract nodes and relationships with precision, " +
	"and let the connections unfold. Your graphs will illuminate the hidden " +
	"connections within the chaos of information."

const taskMarker = "===== TASK ====="

const promptTemplate = `
You are tasked with extracting nodes and relationships from given content and
structuring them into Node and Relationship objects. Here is the outline of
what you need to do:

Content Extraction:
Process the input content and identify the entities mentioned within it.
Entities can be any noun phrases or concepts that represent distinct entities
in the context of the given content.

Node Extraction:
For each identified entity, create a Node object.
Each Node object must have a unique identifier (id) and a type (type).
Additional properties associated with the node can also be extracted and
stored.

Relationship Extraction:
Identify relationships between the entities mentioned in the content.
For each relationship, create a Relationship object.
A Relationship object has a subject (subj) and an object (obj), which are Node
objects representing the entities involved in the relationship.
Each relationship also has a type (type), and additional properties if
applicable.

Output Formatting:
Format the extracted nodes and relationships as instances of the Node and
Relationship classes shown below, one per line.
Every relationship endpoint must also be declared as a Node.

Instructions for you:
Read the provided content thoroughly.
Identify distinct entities mentioned in the content and categorize them as
nodes.
Determine relationships between these entities and represent them as directed
relationships.
Provide the extracted nodes and relationships in the format below.

Example Content:
"John works at XYZ Corporation. He is a software engineer. The company is
located in New York City."

Expected Output:

Nodes:

Node(id='John', type='Person', properties={'agent_generated'})
Node(id='XYZ Corporation', type='Organization', properties={'agent_generated'})
Node(id='New York City', type='Location', properties={'agent_generated'})

Relationships:

Relationship(subj=Node(id='John', type='Person'), obj=Node(id='XYZ Corporation', type='Organization'), type='WorksAt', properties={'agent_generated'})
Relationship(subj=Node(id='John', type='Person'), obj=Node(id='New York City', type='Location'), type='ResidesIn', properties={'agent_generated'})

` + taskMarker + `
Please extract nodes and relationships from the given content and structure
them into Node and Relationship objects.

`

// BuildPrompt renders the extraction prompt for content. The content text
// is appended verbatim after the task marker.
func BuildPrompt(content kg.Content) string {
	text := ""
	if content != nil {
		text = content.String()
	}
	var b strings.Builder
	b.Grow(len(promptTemplate) + len(text) + 1)
	b.WriteString(promptTemplate)
	b.WriteString(text)
	b.WriteByte('\n')
	return b.String()
}
