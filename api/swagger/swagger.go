package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SchoolDesk Attendance API",
        "description": "Attendance tracking for block-scheduled classes",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, token refresh, sessions"},
        {"name": "Users", "description": "User administration"},
        {"name": "Departments", "description": "Department catalog"},
        {"name": "Courses", "description": "Course catalog"},
        {"name": "Teachers", "description": "Teacher profiles"},
        {"name": "Students", "description": "Student profiles and history"},
        {"name": "Classes", "description": "Class sections and rosters"},
        {"name": "Enrollments", "description": "Seat assignments per block"},
        {"name": "Sessions", "description": "Attendance session lifecycle"},
        {"name": "Attendance", "description": "Present/absent marks"},
        {"name": "Dashboard", "description": "Aggregated attendance views"},
        {"name": "Assistant", "description": "Natural-language attendance Q&A"},
        {"name": "Realtime", "description": "Class change event feed"},
        {"name": "Reports", "description": "Asynchronous attendance exports"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"in": "body", "name": "payload", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Token pair", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "New token pair"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/classes": {
            "get": {
                "tags": ["Classes"],
                "summary": "List classes",
                "parameters": [
                    {"in": "query", "name": "block", "type": "string", "enum": ["A", "B", "C", "D"]},
                    {"in": "query", "name": "teacher_id", "type": "string"},
                    {"in": "query", "name": "page", "type": "integer"},
                    {"in": "query", "name": "limit", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Class page", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Classes"],
                "summary": "Create class",
                "responses": {
                    "201": {"description": "Created"},
                    "409": {"description": "Duplicate offering"}
                }
            }
        },
        "/classes/{id}/roster": {
            "get": {
                "tags": ["Classes"],
                "summary": "List enrolled students",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Roster"}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll a student into a class",
                "responses": {
                    "201": {"description": "Enrolled"},
                    "409": {"description": "Already enrolled or block mismatch"}
                }
            }
        },
        "/sessions": {
            "post": {
                "tags": ["Sessions"],
                "summary": "Start an attendance session",
                "responses": {
                    "201": {"description": "Session started"},
                    "403": {"description": "Not the class owner"},
                    "409": {"description": "Session already exists for the date"}
                }
            }
        },
        "/sessions/{id}": {
            "delete": {
                "tags": ["Sessions"],
                "summary": "Delete an attendance session and its marks",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "204": {"description": "Session deleted"},
                    "404": {"description": "Session not found"}
                }
            }
        },
        "/sessions/{id}/end": {
            "post": {
                "tags": ["Sessions"],
                "summary": "End an attendance session",
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Session ended"},
                    "409": {"description": "Session already ended"}
                }
            }
        },
        "/attendance": {
            "post": {
                "tags": ["Attendance"],
                "summary": "Record attendance marks",
                "responses": {
                    "200": {"description": "Upserted records"},
                    "409": {"description": "Session no longer ongoing"},
                    "412": {"description": "Student not on roster"}
                }
            }
        },
        "/dashboard/admin": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "School-wide dashboard",
                "responses": {
                    "200": {"description": "Aggregates", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/assistant/ask": {
            "post": {
                "tags": ["Assistant"],
                "summary": "Ask the attendance assistant",
                "responses": {
                    "200": {"description": "Generated answer"},
                    "502": {"description": "Upstream completion API failure"}
                }
            }
        },
        "/realtime/classes": {
            "get": {
                "tags": ["Realtime"],
                "summary": "Subscribe to class change events",
                "parameters": [
                    {"in": "query", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "101": {"description": "Switching protocols"}
                }
            }
        },
        "/reports": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue an attendance export",
                "responses": {
                    "202": {"description": "Job accepted"}
                }
            }
        },
        "/reports/download/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a completed report",
                "parameters": [
                    {"in": "path", "name": "token", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Report file"},
                    "403": {"description": "Invalid or expired token"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
